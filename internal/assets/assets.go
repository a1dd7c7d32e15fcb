package assets

import (
	"embed"
	"io/fs"
)

//go:embed catalog/tools.yaml
var ToolCatalog []byte

//go:embed schemas
var Schemas embed.FS

// GetSchemasFS returns the embedded schema tree rooted at schemas/.
func GetSchemasFS() fs.FS {
	if sub, err := fs.Sub(Schemas, "schemas"); err == nil {
		return sub
	}
	return Schemas
}

// GetSchema returns the embedded schema bytes by file name (e.g., "catalog.schema.yaml").
func GetSchema(name string) ([]byte, bool) {
	data, err := fs.ReadFile(GetSchemasFS(), name)
	return data, err == nil && len(data) > 0
}
