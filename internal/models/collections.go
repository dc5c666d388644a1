package models

import "slices"

// Collection names double as node types in reference maps.
const (
	CollectionCurriculumPathways  = "curriculum_pathways"
	CollectionLearningExperiences = "learning_experiences"
	CollectionLearningObjects     = "learning_objects"
	CollectionLearningResources   = "learning_resources"
	CollectionAssessments         = "assessments"

	CollectionDomains         = "domains"
	CollectionSubDomains      = "sub_domains"
	CollectionCompetencies    = "competencies"
	CollectionSubCompetencies = "sub_competencies"
	CollectionSkills          = "skills"
)

// childCollections lists, per collection, the collections its children may belong to.
var childCollections = map[string][]string{
	CollectionCurriculumPathways:  {CollectionLearningExperiences},
	CollectionLearningExperiences: {CollectionLearningObjects},
	CollectionLearningObjects:     {CollectionLearningResources, CollectionAssessments},
	CollectionLearningResources:   nil,
	CollectionAssessments:         nil,

	CollectionDomains:         {CollectionSubDomains},
	CollectionSubDomains:      {CollectionCompetencies},
	CollectionCompetencies:    {CollectionSubCompetencies, CollectionSkills},
	CollectionSubCompetencies: {CollectionSkills},
	CollectionSkills:          nil,
}

// Collections returns every registered collection name, sorted.
func Collections() []string {
	out := make([]string, 0, len(childCollections))
	for c := range childCollections {
		out = append(out, c)
	}
	slices.Sort(out)
	return out
}

// IsCollection reports whether name is a registered collection.
func IsCollection(name string) bool {
	_, ok := childCollections[name]
	return ok
}

// ChildCollections returns the collections allowed under parent.
func ChildCollections(parent string) []string {
	return slices.Clone(childCollections[parent])
}

// ParentCollections returns the collections allowed above child.
func ParentCollections(child string) []string {
	var out []string
	for parent, children := range childCollections {
		if slices.Contains(children, child) {
			out = append(out, parent)
		}
	}
	slices.Sort(out)
	return out
}

// CanParent reports whether a node in parent may list a node in child among its children.
func CanParent(parent, child string) bool {
	return slices.Contains(childCollections[parent], child)
}
