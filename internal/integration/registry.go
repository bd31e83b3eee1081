// Package integration lists the built-in connectors.
package integration

import (
	"sort"

	"github.com/tombee/connectkit/internal/integration/api"
	"github.com/tombee/connectkit/internal/integration/jira"
	"github.com/tombee/connectkit/internal/integration/slack"
	"github.com/tombee/connectkit/pkg/errors"
)

// Factory builds a connector from its configuration.
type Factory func(cfg api.Config) api.Connector

// Builtin holds the built-in connector factories by name.
var Builtin = map[string]Factory{
	"slack": slack.New,
	"jira":  jira.New,
}

// New builds the named connector.
func New(name string, cfg api.Config) (api.Connector, error) {
	f, ok := Builtin[name]
	if !ok {
		return nil, &errors.NotFoundError{Resource: "connector", ID: name}
	}
	return f(cfg), nil
}

// Names returns the built-in connector names, sorted.
func Names() []string {
	names := make([]string, 0, len(Builtin))
	for name := range Builtin {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ConnectorFor returns the connector name an operation belongs to: the
// part of the name before the first dot.
func ConnectorFor(operation string) string {
	for i := 0; i < len(operation); i++ {
		if operation[i] == '.' {
			return operation[:i]
		}
	}
	return operation
}
