package mqttbus

import (
	"fmt"
	"strings"

	"github.com/c360/topstack/errors"
)

// Topic converts a dot-separated bus subject into an MQTT topic filter:
// separators become '/', the single-level wildcard '*' becomes '+' and a
// trailing '>' becomes '#'.
//
//	iot.project_001.data.*.*  ->  iot/project_001/data/+/+
func Topic(subject string) (string, error) {
	if subject == "" {
		return "", fmt.Errorf("empty subject: %w", errors.ErrInvalidRequest)
	}
	tokens := strings.Split(subject, ".")
	for i, tok := range tokens {
		switch {
		case tok == "":
			return "", fmt.Errorf("subject %q has an empty token: %w", subject, errors.ErrInvalidRequest)
		case tok == "*":
			tokens[i] = "+"
		case tok == ">":
			if i != len(tokens)-1 {
				return "", fmt.Errorf("subject %q: '>' must be the last token: %w", subject, errors.ErrInvalidRequest)
			}
			tokens[i] = "#"
		case strings.ContainsAny(tok, "/+#"):
			return "", fmt.Errorf("subject %q: token %q contains an MQTT control character: %w",
				subject, tok, errors.ErrInvalidRequest)
		}
	}
	return strings.Join(tokens, "/"), nil
}

// Subject converts a concrete MQTT topic back to bus subject form.
func Subject(topic string) string {
	return strings.ReplaceAll(topic, "/", ".")
}
