package orchestrator

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"time"

	"go.uber.org/zap"
	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
)

const (
	containerName = "batchjob"

	labelManagedBy = "app.kubernetes.io/managed-by"
	labelJobType   = "learnhub.io/job-type"
	managedBy      = "learnhub-engine"
)

// KubernetesConfig selects the namespace, the Deployment whose image runs
// the jobs, and per-job resources.
type KubernetesConfig struct {
	Namespace     string
	Deployment    string
	CPURequest    string
	MemoryRequest string
	CPULimit      string
	MemoryLimit   string
	TTL           time.Duration
}

// KubernetesRunner runs each batch job as a batch/v1 Job.
type KubernetesRunner struct {
	client    kubernetes.Interface
	cfg       KubernetesConfig
	resources corev1.ResourceRequirements
	log       *zap.Logger
}

func NewKubernetesRunner(client kubernetes.Interface, cfg KubernetesConfig, log *zap.Logger) (*KubernetesRunner, error) {
	if log == nil {
		log = zap.NewNop()
	}
	res, err := resourceRequirements(cfg)
	if err != nil {
		return nil, err
	}
	return &KubernetesRunner{client: client, cfg: cfg, resources: res, log: log}, nil
}

var _ Runner = (*KubernetesRunner)(nil)

func (r *KubernetesRunner) Create(ctx context.Context, spec JobSpec) error {
	tmpl, err := r.template(ctx)
	if err != nil {
		return err
	}

	job := r.buildJob(spec, tmpl)
	_, err = r.client.BatchV1().Jobs(r.cfg.Namespace).Create(ctx, job, metav1.CreateOptions{})
	if apierrors.IsAlreadyExists(err) {
		return fmt.Errorf("%w: %s", ErrAlreadyExists, spec.Name)
	}
	if err != nil {
		return fmt.Errorf("create kubernetes job %s: %w", spec.Name, err)
	}
	r.log.Info("kubernetes job created",
		zap.String("name", spec.Name),
		zap.String("namespace", r.cfg.Namespace),
		zap.String("image", tmpl.Image))
	return nil
}

func (r *KubernetesRunner) Delete(ctx context.Context, name string) error {
	policy := metav1.DeletePropagationBackground
	err := r.client.BatchV1().Jobs(r.cfg.Namespace).Delete(ctx, name, metav1.DeleteOptions{PropagationPolicy: &policy})
	if apierrors.IsNotFound(err) {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return fmt.Errorf("delete kubernetes job %s: %w", name, err)
	}
	return nil
}

func (r *KubernetesRunner) State(ctx context.Context, name string) (RunState, error) {
	job, err := r.client.BatchV1().Jobs(r.cfg.Namespace).Get(ctx, name, metav1.GetOptions{})
	if apierrors.IsNotFound(err) {
		return RunMissing, nil
	}
	if err != nil {
		return "", fmt.Errorf("get kubernetes job %s: %w", name, err)
	}
	return jobState(job), nil
}

// template returns the first container of the configured Deployment. Jobs
// run its image with its environment so they reach the same database and
// redis as the service that launched them.
func (r *KubernetesRunner) template(ctx context.Context) (corev1.Container, error) {
	dep, err := r.client.AppsV1().Deployments(r.cfg.Namespace).Get(ctx, r.cfg.Deployment, metav1.GetOptions{})
	if err != nil {
		return corev1.Container{}, fmt.Errorf("get deployment %s: %w", r.cfg.Deployment, err)
	}
	containers := dep.Spec.Template.Spec.Containers
	if len(containers) == 0 || containers[0].Image == "" {
		return corev1.Container{}, fmt.Errorf("deployment %s has no container image", r.cfg.Deployment)
	}
	return containers[0], nil
}

func (r *KubernetesRunner) buildJob(spec JobSpec, tmpl corev1.Container) *batchv1.Job {
	labels := map[string]string{
		labelManagedBy: managedBy,
		labelJobType:   spec.Type,
	}

	inherited := make(map[string]bool, len(tmpl.Env))
	env := make([]corev1.EnvVar, 0, len(tmpl.Env)+len(spec.Env)+1)
	for _, e := range tmpl.Env {
		if e.Name == EnvJobType {
			continue
		}
		inherited[e.Name] = true
		env = append(env, e)
	}
	env = append(env, corev1.EnvVar{Name: EnvJobType, Value: spec.Type})
	for _, k := range slices.Sorted(maps.Keys(spec.Env)) {
		if ReservedEnv(k) || inherited[k] {
			r.log.Warn("dropping job env var that shadows service configuration",
				zap.String("name", spec.Name), zap.String("key", k))
			continue
		}
		env = append(env, corev1.EnvVar{Name: k, Value: spec.Env[k]})
	}

	backoffLimit := int32(0)
	job := &batchv1.Job{
		ObjectMeta: metav1.ObjectMeta{
			Name:      spec.Name,
			Namespace: r.cfg.Namespace,
			Labels:    labels,
		},
		Spec: batchv1.JobSpec{
			BackoffLimit: &backoffLimit,
			Template: corev1.PodTemplateSpec{
				ObjectMeta: metav1.ObjectMeta{Labels: labels},
				Spec: corev1.PodSpec{
					RestartPolicy: corev1.RestartPolicyNever,
					Containers: []corev1.Container{{
						Name:      containerName,
						Image:     tmpl.Image,
						Command:   []string{"batchjob", "--container_name", spec.Name},
						Env:       env,
						EnvFrom:   tmpl.EnvFrom,
						Resources: r.resources,
					}},
				},
			},
		},
	}
	if r.cfg.TTL > 0 {
		ttl := int32(r.cfg.TTL / time.Second)
		job.Spec.TTLSecondsAfterFinished = &ttl
	}
	return job
}

func jobState(job *batchv1.Job) RunState {
	for _, c := range job.Status.Conditions {
		if c.Status != corev1.ConditionTrue {
			continue
		}
		switch c.Type {
		case batchv1.JobComplete:
			return RunSucceeded
		case batchv1.JobFailed:
			return RunFailed
		}
	}
	if job.Status.Active > 0 {
		return RunRunning
	}
	return RunPending
}

func resourceRequirements(cfg KubernetesConfig) (corev1.ResourceRequirements, error) {
	req := corev1.ResourceRequirements{
		Requests: corev1.ResourceList{},
		Limits:   corev1.ResourceList{},
	}
	for _, q := range []struct {
		list  corev1.ResourceList
		name  corev1.ResourceName
		value string
	}{
		{req.Requests, corev1.ResourceCPU, cfg.CPURequest},
		{req.Requests, corev1.ResourceMemory, cfg.MemoryRequest},
		{req.Limits, corev1.ResourceCPU, cfg.CPULimit},
		{req.Limits, corev1.ResourceMemory, cfg.MemoryLimit},
	} {
		if q.value == "" {
			continue
		}
		parsed, err := resource.ParseQuantity(q.value)
		if err != nil {
			return req, fmt.Errorf("invalid %s quantity %q: %w", q.name, q.value, err)
		}
		q.list[q.name] = parsed
	}
	return req, nil
}
