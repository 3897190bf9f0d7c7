// Command mcp_demo is a small capability server for trying the agent
// end to end. It exposes a fetch-weather tool, a review-code prompt and a
// config://app resource over stdio, or over streamable HTTP with -http.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// forecasts is canned data; the demo never calls a real weather service.
var forecasts = map[string]string{
	"delhi":     "34°C, haze, humidity 41%",
	"mumbai":    "30°C, light rain, humidity 83%",
	"london":    "14°C, overcast, humidity 76%",
	"new york":  "18°C, clear, humidity 52%",
	"tokyo":     "21°C, partly cloudy, humidity 60%",
	"bangalore": "26°C, cloudy, humidity 68%",
}

func main() {
	httpAddr := flag.String("http", "", "Serve streamable HTTP on this address instead of stdio")
	flag.Parse()

	s := newServer()
	var err error
	if *httpAddr != "" {
		fmt.Fprintf(os.Stderr, "mcp_demo listening on http://%s/mcp\n", *httpAddr)
		err = server.NewStreamableHTTPServer(s).Start(*httpAddr)
	} else {
		err = server.ServeStdio(s)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "mcp_demo: %v\n", err)
		os.Exit(1)
	}
}

func newServer() *server.MCPServer {
	s := server.NewMCPServer(
		"hybrid-demo",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithPromptCapabilities(true),
		server.WithRecovery(),
	)
	s.AddTool(weatherTool(), handleWeather)
	s.AddPrompt(reviewPrompt(), handleReview)
	s.AddResource(configResource(), handleConfig)
	return s
}

func weatherTool() mcp.Tool {
	return mcp.NewTool("fetch-weather",
		mcp.WithDescription("Current weather for a city."),
		mcp.WithString("city",
			mcp.Required(),
			mcp.Description("City name, e.g. Delhi"),
		),
	)
}

func handleWeather(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	city := strings.TrimSpace(req.GetString("city", ""))
	if city == "" {
		return mcp.NewToolResultError("'city' is required"), nil
	}
	forecast, ok := forecasts[strings.ToLower(city)]
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("no weather data for '%s'", city)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Weather in %s: %s", city, forecast)), nil
}

func reviewPrompt() mcp.Prompt {
	return mcp.NewPrompt("review-code",
		mcp.WithPromptDescription("Ask for a focused code review."),
		mcp.WithArgument("code",
			mcp.ArgumentDescription("The code to review"),
			mcp.RequiredArgument(),
		),
		mcp.WithArgument("language",
			mcp.ArgumentDescription("Programming language. Default: go"),
		),
	)
}

func handleReview(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	code := req.Params.Arguments["code"]
	if strings.TrimSpace(code) == "" {
		return nil, fmt.Errorf("argument 'code' is required")
	}
	language := req.Params.Arguments["language"]
	if language == "" {
		language = "go"
	}

	return &mcp.GetPromptResult{
		Description: fmt.Sprintf("Review %s code", language),
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.NewTextContent(fmt.Sprintf(
					"Review the following %s code. List bugs first, then risky patterns, then style issues.\n\n```%s\n%s\n```",
					language, language, code,
				)),
			},
		},
	}, nil
}

func configResource() mcp.Resource {
	return mcp.NewResource(
		"config://app",
		"Application configuration",
		mcp.WithResourceDescription("Settings of the demo application"),
		mcp.WithMIMEType("application/json"),
	)
}

func handleConfig(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	cities := make([]string, 0, len(forecasts))
	for c := range forecasts {
		cities = append(cities, c)
	}
	sort.Strings(cities)

	data, err := json.MarshalIndent(map[string]any{
		"name":      "hybrid-demo",
		"version":   "1.0.0",
		"units":     "metric",
		"cities":    cities,
		"log_level": "info",
	}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling config: %w", err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
