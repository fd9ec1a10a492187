package agent

import (
	"fmt"
	"strings"

	corev1 "k8s.io/api/core/v1"
)

// ParseNodeSelectors parses key=value pairs into a node selector.
func ParseNodeSelectors(values []string) (map[string]string, error) {
	if len(values) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(values))
	for _, v := range values {
		key, value, ok := strings.Cut(v, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid node selector %q, expected key=value", v)
		}
		out[key] = value
	}
	return out, nil
}

// ParseTolerations parses key=value:effect or key:effect entries. An entry
// without a value uses the Exists operator.
func ParseTolerations(values []string) ([]corev1.Toleration, error) {
	out := make([]corev1.Toleration, 0, len(values))
	for _, v := range values {
		spec, effect, ok := strings.Cut(v, ":")
		if !ok || spec == "" {
			return nil, fmt.Errorf("invalid toleration %q, expected key=value:effect", v)
		}

		t := corev1.Toleration{Effect: corev1.TaintEffect(effect)}
		switch t.Effect {
		case corev1.TaintEffectNoSchedule, corev1.TaintEffectPreferNoSchedule, corev1.TaintEffectNoExecute:
		default:
			return nil, fmt.Errorf("invalid toleration effect %q in %q", effect, v)
		}

		if key, value, hasValue := strings.Cut(spec, "="); hasValue {
			t.Key, t.Value, t.Operator = key, value, corev1.TolerationOpEqual
		} else {
			t.Key, t.Operator = spec, corev1.TolerationOpExists
		}
		out = append(out, t)
	}
	return out, nil
}
