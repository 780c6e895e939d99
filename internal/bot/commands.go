package bot

import (
	"context"
	"errors"
	"strings"

	"statusninja/internal/registry"
	"statusninja/internal/storage"
)

// command runs one chat command and returns the user-facing reply.
// An error return means an unexpected failure; the router converts it to a
// generic message. Expected outcomes (not found, conflict, denied) are
// mapped to replies here so they are never masked by each other.
type command struct {
	endpointScoped bool // first arg is an endpoint name the guard must see
	run            func(ctx context.Context, r *Router, chatID int64, args []string) (string, error)
}

var commandTable = map[string]command{
	"/start":       {run: cmdHelp},
	"/help":        {run: cmdHelp},
	"/add":         {run: cmdAdd},
	"/list":        {run: cmdList},
	"/delete":      {endpointScoped: true, run: cmdDelete},
	"/subscribe":   {endpointScoped: true, run: cmdSubscribe},
	"/unsubscribe": {endpointScoped: true, run: cmdUnsubscribe},
}

const helpText = `Status Bot Help

Available commands:
/add <name> <url> - Add a new API to monitor
/list - List your monitored APIs
/delete <name> - Delete one of your APIs
/subscribe <api_name> - Subscribe this chat to an API
/unsubscribe <api_name> - Unsubscribe this chat from an API
/help - Show this help message`

func cmdHelp(ctx context.Context, r *Router, chatID int64, args []string) (string, error) {
	return helpText, nil
}

func cmdAdd(ctx context.Context, r *Router, chatID int64, args []string) (string, error) {
	if len(args) < 2 {
		return "Usage: /add <name> <url>", nil
	}
	name, url := args[0], args[1]

	_, err := r.registry.AddEndpoint(ctx, name, url, chatID)
	switch {
	case errors.Is(err, storage.ErrConflict):
		return `Error: an API endpoint named "` + name + `" already exists.`, nil
	case err != nil:
		return "", err
	}
	return `API endpoint "` + name + `" added successfully.`, nil
}

func cmdList(ctx context.Context, r *Router, chatID int64, args []string) (string, error) {
	endpoints, err := r.registry.ListEndpointsOwned(ctx, chatID)
	if err != nil {
		return "", err
	}
	if len(endpoints) == 0 {
		return "No API endpoints configured for this chat.", nil
	}
	var b strings.Builder
	b.WriteString("Configured API endpoints for this chat:\n")
	for i, e := range endpoints {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString("- " + e.Name + ": " + e.URL)
	}
	return b.String(), nil
}

func cmdDelete(ctx context.Context, r *Router, chatID int64, args []string) (string, error) {
	if len(args) < 1 {
		return "Usage: /delete <name>", nil
	}
	name := args[0]

	err := r.registry.DeleteEndpoint(ctx, name, chatID)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return `Error: API endpoint "` + name + `" not found.`, nil
	case errors.Is(err, registry.ErrPermissionDenied):
		return `You don't have permission to delete API "` + name + `".`, nil
	case err != nil:
		return "", err
	}
	return `API endpoint "` + name + `" has been deleted.`, nil
}

func cmdSubscribe(ctx context.Context, r *Router, chatID int64, args []string) (string, error) {
	if len(args) < 1 {
		return "Usage: /subscribe <api_name>", nil
	}
	name := args[0]

	err := r.registry.Subscribe(ctx, chatID, name)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return `Error: API endpoint "` + name + `" not found.`, nil
	case errors.Is(err, registry.ErrPermissionDenied):
		return `You don't have permission to access API "` + name + `".`, nil
	case errors.Is(err, storage.ErrConflict):
		return "Error: This chat is already subscribed to that API.", nil
	case err != nil:
		return "", err
	}
	return `Successfully subscribed to "` + name + `" API health checks.`, nil
}

func cmdUnsubscribe(ctx context.Context, r *Router, chatID int64, args []string) (string, error) {
	if len(args) < 1 {
		return "Usage: /unsubscribe <api_name>", nil
	}
	name := args[0]

	err := r.registry.Unsubscribe(ctx, chatID, name)
	switch {
	case errors.Is(err, registry.ErrPermissionDenied):
		return `You don't have permission to access API "` + name + `".`, nil
	case errors.Is(err, registry.ErrNotSubscribed):
		return "Error: This chat is not subscribed to that API.", nil
	case errors.Is(err, storage.ErrNotFound):
		return `Error: API endpoint "` + name + `" not found.`, nil
	case err != nil:
		return "", err
	}
	return `Successfully unsubscribed from "` + name + `" API health checks.`, nil
}
