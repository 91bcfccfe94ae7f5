// ConfigMapSource reads the same dotted-key shape from a Kubernetes
// ConfigMap, for clusters that prefer ConfigMap-mounted config over a
// file mounted from a Secret/volume. Grounded on the teacher's
// cmn/k8s.Client's in-cluster bootstrap (rest.InClusterConfig +
// kubernetes.NewForConfig), the same pattern orchestrate/k8slease uses
// for its LeaseLock client, applied here to a ConfigMap Get instead of
// a Lease.
package propsrc

import (
	"context"
	"fmt"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
)

type ConfigMapSource struct {
	Namespace string
	Name      string

	// client is overridable in tests; nil means "build one from
	// in-cluster config", exactly as cmn/k8s._initClient does.
	client kubernetes.Interface
}

func NewConfigMapSource(namespace, name string) (*ConfigMapSource, error) {
	cfg, err := rest.InClusterConfig()
	if err != nil {
		return nil, err
	}
	clientset, err := kubernetes.NewForConfig(cfg)
	if err != nil {
		return nil, err
	}
	return &ConfigMapSource{Namespace: namespace, Name: name, client: clientset}, nil
}

func (c *ConfigMapSource) Load() (map[string]any, error) {
	cm, err := c.client.CoreV1().ConfigMaps(c.Namespace).Get(context.Background(), c.Name, metav1.GetOptions{})
	if err != nil {
		return nil, fmt.Errorf("get configmap %s/%s: %w", c.Namespace, c.Name, err)
	}
	return flattenConfigMapData(cm), nil
}

// flattenConfigMapData treats every Data entry's key as an already-dotted
// property name ("extract.follow_file") and its value as a typed
// property, parsed the same way EnvOverlay parses env var values.
func flattenConfigMapData(cm *corev1.ConfigMap) map[string]any {
	out := make(map[string]any, len(cm.Data))
	for k, v := range cm.Data {
		out[k] = parseEnvValue(v)
	}
	return out
}
