package internal

import (
	"context"
	"log/slog"
	"os"

	"github.com/starford/dossier/internal/mcpserver"
)

// RunMCP serves the dossier tools over stdio until stdin closes. Logs go to
// stderr.
func RunMCP(_ context.Context, opts ...Option) error {
	core, err := NewCore(append([]Option{WithLogOutput(os.Stderr)}, opts...)...)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := core.Close(); cerr != nil {
			core.Logger.Error("Storage close error", slog.String("error", cerr.Error()))
		}
	}()

	core.Logger.Info("MCP server starting on stdio", slog.String("version", core.Version))
	return mcpserver.New(core.Service, core.Version).ServeStdio()
}
