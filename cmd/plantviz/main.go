// plantviz — PlantUML diagram tools for MCP agents.
package main

import "github.com/plantviz/plantviz/internal/cli"

func main() {
	cli.Execute()
}
