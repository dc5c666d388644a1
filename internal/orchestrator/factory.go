package orchestrator

import (
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/learnhub/engine/pkg/config"
	"go.uber.org/zap"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
)

// NewFromConfig builds the runner selected by JOB_BACKEND. The returned
// func releases its connections.
func NewFromConfig(cfg *config.Config, log *zap.Logger) (Runner, func() error, error) {
	switch cfg.JobBackend {
	case "queue":
		r := NewQueueRunner(asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword}, cfg.JobTTL, log)
		return r, r.Close, nil
	case "kubernetes":
		restCfg, err := restConfig(cfg.Kubeconfig)
		if err != nil {
			return nil, nil, err
		}
		client, err := kubernetes.NewForConfig(restCfg)
		if err != nil {
			return nil, nil, fmt.Errorf("kubernetes client: %w", err)
		}
		r, err := NewKubernetesRunner(client, KubernetesConfig{
			Namespace:     cfg.JobNamespace,
			Deployment:    cfg.JobDeployment,
			CPURequest:    cfg.JobCPURequest,
			MemoryRequest: cfg.JobMemoryRequest,
			CPULimit:      cfg.JobCPULimit,
			MemoryLimit:   cfg.JobMemoryLimit,
			TTL:           cfg.JobTTL,
		}, log)
		if err != nil {
			return nil, nil, err
		}
		return r, func() error { return nil }, nil
	default:
		return nil, nil, fmt.Errorf("unknown job backend %q", cfg.JobBackend)
	}
}

func restConfig(kubeconfig string) (*rest.Config, error) {
	if kubeconfig != "" {
		c, err := clientcmd.BuildConfigFromFlags("", kubeconfig)
		if err != nil {
			return nil, fmt.Errorf("load kubeconfig %s: %w", kubeconfig, err)
		}
		return c, nil
	}
	c, err := rest.InClusterConfig()
	if err != nil {
		return nil, fmt.Errorf("in-cluster kubernetes config: %w", err)
	}
	return c, nil
}
