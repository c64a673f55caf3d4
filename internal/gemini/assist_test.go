package gemini

import (
	"context"
	"sync"
	"testing"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

func TestAssistClientInitConcurrent(t *testing.T) {
	assist := NewAssist(Config{APIKey: "test-key", Model: "test-model"}, zap.NewNop())

	const callers = 8
	clients := make([]*genai.Client, callers)
	errs := make([]error, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			clients[i], errs[i] = assist.ensureClient(context.Background())
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		if errs[i] != nil {
			t.Fatalf("caller %d: ensureClient error: %v", i, errs[i])
		}
		if clients[i] != clients[0] {
			t.Fatalf("caller %d got a different client instance", i)
		}
	}
}

func TestAssistClientReused(t *testing.T) {
	assist := NewAssist(Config{APIKey: "test-key", Model: "test-model"}, zap.NewNop())

	first, err := assist.ensureClient(context.Background())
	if err != nil {
		t.Fatalf("ensureClient error: %v", err)
	}
	second, err := assist.ensureClient(context.Background())
	if err != nil {
		t.Fatalf("ensureClient error: %v", err)
	}
	if first != second {
		t.Fatal("second call built a new client, want the cached one")
	}
}
