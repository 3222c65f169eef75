package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// widget is a small three-version kind used across the package tests.
//
//	v0: {name, port?}
//	v1: port moved under listen, defaulting to 8080
//	v2: listen.host added, defaulting to localhost; optional tags

const widgetV0 = `
#Config: {
	version: 0
	name:    string
	port?:   int
}
`

const widgetV1 = `
#Config: {
	version: 1
	name:    string
	listen: {
		port: int & >0 & <65536
	}
}
`

const widgetV2 = `
#Config: {
	version: 2
	name:    string
	listen: {
		port: int & >0 & <65536
		host: string
	}
	tags?: [...string]
}
`

type widget struct {
	Version int      `yaml:"version"`
	Name    string   `yaml:"name" validate:"required"`
	Listen  listen   `yaml:"listen"`
	Tags    []string `yaml:"tags,omitempty"`
}

type listen struct {
	Port int    `yaml:"port" validate:"min=1,max=65535"`
	Host string `yaml:"host" validate:"required"`
}

var widgetSchemas = MustSchemaSet(widgetV0, widgetV1, widgetV2)

func moveListenPort() Migration {
	return Migration{
		Description: "move port under listen",
		Apply: func(doc map[string]any) (map[string]any, error) {
			port, ok := doc["port"]
			if !ok {
				port = 8080
			}
			delete(doc, "port")
			doc["listen"] = map[string]any{"port": port}
			doc["version"] = 1
			return doc, nil
		},
	}
}

func widgetKind(migrations ...Migration) *Kind[widget] {
	if migrations == nil {
		migrations = []Migration{
			moveListenPort(),
			AddDefault(2, "listen.host", "localhost"),
		}
	}
	return &Kind[widget]{
		Name:       "widget",
		FileName:   "widget.yaml",
		Schemas:    widgetSchemas,
		Migrations: migrations,
		Template:   "tags:\n  - edge\n  - internal",
	}
}

func defaultWidget() (widget, error) {
	return widget{
		Version: 2,
		Name:    "default",
		Listen:  listen{Port: 8080, Host: "localhost"},
	}, nil
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func readDoc(t *testing.T, path string) map[string]any {
	t.Helper()
	doc, err := parseDocument([]byte(readFile(t, path)))
	require.NoError(t, err)
	return doc
}
