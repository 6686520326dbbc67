package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

var baseURL = "http://localhost:8080"

func main() {
	if u := os.Getenv("GRAPH_RAG_URL"); u != "" {
		baseURL = u
	}

	// Wait for server to start
	time.Sleep(2 * time.Second)

	fmt.Println("Starting smoke test...")

	fmt.Println("1. Health check...")
	if _, ok := sendRequest("GET", "/health", nil); !ok {
		fmt.Println("FAILED: health")
		os.Exit(1)
	}
	fmt.Println("PASSED: health")

	fmt.Println("2. Asking a biomarker question...")
	body, ok := sendRequest("POST", "/answer", map[string]interface{}{
		"question":       "What biomarkers are associated with APOE4?",
		"return_context": true,
	})
	if !ok {
		fmt.Println("FAILED: answer")
		os.Exit(1)
	}
	var ans struct {
		Answer     string  `json:"answer"`
		IntentType string  `json:"intent_type"`
		Strategy   string  `json:"strategy"`
		Context    *string `json:"context"`
	}
	if err := json.Unmarshal(body, &ans); err != nil || ans.Answer == "" || ans.Strategy == "" || ans.Context == nil {
		fmt.Printf("FAILED: answer has unexpected shape: %s\n", string(body))
		os.Exit(1)
	}
	fmt.Printf("PASSED: answer (intent=%s, strategy=%s)\n", ans.IntentType, ans.Strategy)

	fmt.Println("3. Unknown entity falls back...")
	body, ok = sendRequest("POST", "/answer", map[string]interface{}{
		"question":       "XYZ123 treatment options",
		"return_context": true,
	})
	if !ok {
		fmt.Println("FAILED: fallback")
		os.Exit(1)
	}
	if err := json.Unmarshal(body, &ans); err != nil || ans.Strategy != "keyword-fallback" {
		fmt.Printf("FAILED: expected keyword-fallback, got: %s\n", string(body))
		os.Exit(1)
	}
	fmt.Println("PASSED: fallback")

	fmt.Println("4. Empty question is rejected...")
	if status := statusOf("POST", "/answer", map[string]string{"question": "  "}); status != http.StatusBadRequest {
		fmt.Printf("FAILED: expected 400, got %d\n", status)
		os.Exit(1)
	}
	fmt.Println("PASSED: empty question")
}

func newRequest(method, endpoint string, payload interface{}) (*http.Request, error) {
	var body io.Reader
	if payload != nil {
		jsonBytes, _ := json.Marshal(payload)
		body = bytes.NewBuffer(jsonBytes)
	}
	req, err := http.NewRequest(method, baseURL+endpoint, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

func sendRequest(method, endpoint string, payload interface{}) ([]byte, bool) {
	req, err := newRequest(method, endpoint, payload)
	if err != nil {
		fmt.Printf("Error creating request: %v\n", err)
		return nil, false
	}

	client := &http.Client{Timeout: 2 * time.Minute}
	resp, err := client.Do(req)
	if err != nil {
		fmt.Printf("Error sending request: %v\n", err)
		return nil, false
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		fmt.Printf("Request failed with status %d: %s\n", resp.StatusCode, string(respBody))
		return nil, false
	}
	fmt.Printf("Response: %s\n", string(respBody))
	return respBody, true
}

func statusOf(method, endpoint string, payload interface{}) int {
	req, err := newRequest(method, endpoint, payload)
	if err != nil {
		return 0
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return 0
	}
	resp.Body.Close()
	return resp.StatusCode
}
