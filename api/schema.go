// Package api defines the JSON view of an assembled I/O tree, shared by
// the CLI, the query engine, the MCP server and the NFS mount.
package api

// Version of the JSON view layout.
const Version = "v1"

// Tree is the JSON view of one loaded document.
type Tree struct {
	Version string `json:"version"`
	// Document is the base name of the loaded file.
	Document string   `json:"document"`
	Headers  []string `json:"headers"`
	Modules  []Module `json:"modules"`
}

// Module is one hardware unit.
type Module struct {
	Hardware string  `json:"hardware"`
	Name     string  `json:"name"`
	Groups   []Group `json:"groups"`
}

// Group holds a module's Inputs or Outputs.
type Group struct {
	Name      string     `json:"name"`
	Endpoints []Endpoint `json:"endpoints"`
}

// Endpoint is one displayed I/O point. Children are the compound points
// nested below a base point.
type Endpoint struct {
	Hardware         string     `json:"hardware"`
	HardwareComment  string     `json:"hardware_comment"`
	Parameter        string     `json:"parameter"`
	ParameterComment string     `json:"parameter_comment"`
	Path             string     `json:"path"`
	Children         []Endpoint `json:"children,omitempty"`
}
