package agent

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/utils/ptr"

	"github.com/NVIDIA/cns-facts/pkg/serializer"
)

const (
	dbusVolume    = "dbus"
	scratchVolume = "tmp"
)

// args returns the cnsfacts command line the agent container runs.
func (d *Deployer) args() []string {
	args := []string{"collect", "--output", d.config.Output, "--format", string(serializer.FormatYAML)}
	for _, p := range d.config.Plugins {
		args = append(args, "--plugin", p)
	}
	if d.config.Debug {
		args = append([]string{"--debug"}, args...)
	}
	return args
}

func (d *Deployer) job() *batchv1.Job {
	hostPathDir := corev1.HostPathDirectory
	return &batchv1.Job{
		ObjectMeta: metav1.ObjectMeta{
			Name:      d.config.JobName,
			Namespace: d.config.Namespace,
			Labels:    d.labels(),
		},
		Spec: batchv1.JobSpec{
			BackoffLimit:            ptr.To[int32](0),
			TTLSecondsAfterFinished: ptr.To[int32](3600),
			Template: corev1.PodTemplateSpec{
				ObjectMeta: metav1.ObjectMeta{
					Labels: d.labels(),
				},
				Spec: corev1.PodSpec{
					ServiceAccountName: d.config.ServiceAccountName,
					RestartPolicy:      corev1.RestartPolicyNever,
					HostPID:            true,
					HostNetwork:        true,
					HostIPC:            true,
					DNSPolicy:          corev1.DNSClusterFirstWithHostNet,
					NodeSelector:       d.config.NodeSelector,
					Tolerations:        d.config.Tolerations,
					Containers: []corev1.Container{
						{
							Name:  DefaultName,
							Image: d.config.Image,
							Args:  d.args(),
							Env: []corev1.EnvVar{
								{
									Name: "NODE_NAME",
									ValueFrom: &corev1.EnvVarSource{
										FieldRef: &corev1.ObjectFieldSelector{FieldPath: "spec.nodeName"},
									},
								},
							},
							SecurityContext: &corev1.SecurityContext{
								Privileged: ptr.To(true),
							},
							VolumeMounts: []corev1.VolumeMount{
								{Name: dbusVolume, MountPath: "/var/run/dbus", ReadOnly: true},
								{Name: scratchVolume, MountPath: "/tmp"},
							},
						},
					},
					Volumes: []corev1.Volume{
						{
							Name: dbusVolume,
							VolumeSource: corev1.VolumeSource{
								HostPath: &corev1.HostPathVolumeSource{Path: "/run/dbus", Type: &hostPathDir},
							},
						},
						{
							Name:         scratchVolume,
							VolumeSource: corev1.VolumeSource{EmptyDir: &corev1.EmptyDirVolumeSource{}},
						},
					},
				},
			},
		},
	}
}

// ensureJob deletes any previous Job and creates a fresh one.
func (d *Deployer) ensureJob(ctx context.Context) error {
	if err := d.deleteJob(ctx); err != nil {
		return err
	}
	_, err := d.clientset.BatchV1().Jobs(d.config.Namespace).Create(ctx, d.job(), metav1.CreateOptions{})
	return err
}

func (d *Deployer) deleteJob(ctx context.Context) error {
	policy := metav1.DeletePropagationBackground
	return ignoreNotFound(d.clientset.BatchV1().Jobs(d.config.Namespace).
		Delete(ctx, d.config.JobName, metav1.DeleteOptions{PropagationPolicy: &policy}))
}

func (d *Deployer) waitForJobCompletion(ctx context.Context, timeout time.Duration) error {
	slog.Debug("waiting for agent job",
		slog.String("namespace", d.config.Namespace),
		slog.String("job", d.config.JobName),
		slog.Duration("timeout", timeout))

	err := wait.PollUntilContextTimeout(ctx, d.pollInterval, timeout, true, func(ctx context.Context) (bool, error) {
		job, err := d.clientset.BatchV1().Jobs(d.config.Namespace).Get(ctx, d.config.JobName, metav1.GetOptions{})
		if err != nil {
			return false, err
		}
		for _, c := range job.Status.Conditions {
			if c.Status != corev1.ConditionTrue {
				continue
			}
			switch c.Type {
			case batchv1.JobComplete:
				return true, nil
			case batchv1.JobFailed:
				return false, fmt.Errorf("agent job failed: %s", c.Message)
			}
		}
		if job.Status.Succeeded > 0 {
			return true, nil
		}
		if job.Status.Failed > 0 {
			return false, fmt.Errorf("agent job failed")
		}
		return false, nil
	})
	if err != nil {
		return fmt.Errorf("job %s/%s did not complete: %w", d.config.Namespace, d.config.JobName, err)
	}
	return nil
}

func (d *Deployer) getFactsFromConfigMap(ctx context.Context) ([]byte, error) {
	namespace, name, err := serializer.ParseConfigMapURI(d.config.Output)
	if err != nil {
		return nil, err
	}
	cm, err := d.clientset.CoreV1().ConfigMaps(namespace).Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get configmap %s/%s: %w", namespace, name, err)
	}
	key := serializer.NewConfigMapWriter(serializer.FormatYAML, namespace, name).DataKey()
	data, ok := cm.Data[key]
	if !ok {
		return nil, fmt.Errorf("configmap %s/%s has no %s key", namespace, name, key)
	}
	return []byte(data), nil
}
