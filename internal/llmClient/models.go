package llmclient

import (
	"context"
	"net/http"
)

type ollamaTagsResp struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// ListOllamaModels returns the names of locally downloaded Ollama models.
func ListOllamaModels(ctx context.Context, hc *http.Client, baseURL string) ([]string, error) {
	var out ollamaTagsResp
	if err := getJSON(ctx, hc, Ollama, trimSlash(baseURL)+"/api/tags", nil, &out); err != nil {
		return nil, err
	}
	names := make([]string, 0, len(out.Models))
	for _, m := range out.Models {
		names = append(names, m.Name)
	}
	return names, nil
}

// PullOllamaModel asks the Ollama server to download model and waits for
// the pull to finish.
func PullOllamaModel(ctx context.Context, hc *http.Client, baseURL, model string) error {
	body := map[string]any{"name": model, "stream": false}
	return postJSON(ctx, hc, Ollama, trimSlash(baseURL)+"/api/pull", nil, body, nil)
}

type lmstudioModelsResp struct {
	Data []struct {
		ID string `json:"id"`
	} `json:"data"`
}

// ListLMStudioModels returns the ids of models LM Studio can serve. baseURL
// includes the /v1 prefix.
func ListLMStudioModels(ctx context.Context, hc *http.Client, baseURL, apiKey string) ([]string, error) {
	headers := map[string]string{}
	if apiKey != "" {
		headers["Authorization"] = "Bearer " + apiKey
	}
	var out lmstudioModelsResp
	if err := getJSON(ctx, hc, LMStudio, trimSlash(baseURL)+"/models", headers, &out); err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(out.Data))
	for _, m := range out.Data {
		ids = append(ids, m.ID)
	}
	return ids, nil
}
