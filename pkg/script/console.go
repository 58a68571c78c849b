package script

import (
	"context"
	"log/slog"
	"strings"

	"github.com/dop251/goja"
)

// newConsole builds a console object whose methods write to logger.
func newConsole(vm *goja.Runtime, logger *slog.Logger) *goja.Object {
	console := vm.NewObject()
	levels := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"log":   slog.LevelInfo,
		"info":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	}
	for name, level := range levels {
		_ = console.Set(name, func(call goja.FunctionCall) goja.Value {
			parts := make([]string, len(call.Arguments))
			for i, arg := range call.Arguments {
				parts[i] = arg.String()
			}
			logger.Log(context.Background(), level, strings.Join(parts, " "), "source", "console."+name)
			return goja.Undefined()
		})
	}
	return console
}
