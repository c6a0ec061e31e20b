package services

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/evalIA/property-import-service/internal/ai"
	"github.com/evalIA/property-import-service/internal/db"
	"github.com/evalIA/property-import-service/internal/models"
)

const filler = " Role d'evaluation fonciere, municipalite de Longueuil, exercice financier 2025."

// doc builds a payload whose extracted text carries a routing tag for fakeLLM
func doc(tag string) []byte {
	return []byte(tag + filler)
}

// fakeText treats the payload as the document text
type fakeText struct{}

func (fakeText) ExtractText(data []byte) (string, float64, error) {
	if strings.HasPrefix(string(data), "%PDF-corrupt") {
		return "", 0, errors.New("malformed PDF: missing xref table")
	}
	return string(data), 0.01, nil
}

// fakeLLM returns canned records keyed by the tag at the start of the text
type fakeLLM struct {
	mu      sync.Mutex
	records map[string][]map[string]interface{}
	errs    map[string]error
	calls   []string
	gate    chan struct{} // when set, each call waits for a token
}

func newFakeLLM() *fakeLLM {
	return &fakeLLM{
		records: make(map[string][]map[string]interface{}),
		errs:    make(map[string]error),
	}
}

func (f *fakeLLM) on(tag string, recs ...map[string]interface{}) *fakeLLM {
	f.records[tag] = recs
	return f
}

func (f *fakeLLM) Extract(ctx context.Context, text string, docType models.DocumentType, creds models.Credentials) ([]models.ExtractedPropertyData, error) {
	if f.gate != nil {
		<-f.gate
	}
	tag := strings.Fields(text)[0]

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, tag)
	if err, ok := f.errs[tag]; ok {
		return nil, &ai.ExtractionFailedError{Provider: creds.Provider, Err: err}
	}
	var out []models.ExtractedPropertyData
	for _, r := range f.records[tag] {
		out = append(out, ai.DecodeRecord(r))
	}
	return out, nil
}

func (f *fakeLLM) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

var testCreds = models.Credentials{APIKey: "sk-test", Provider: "openai", Model: "gpt-4o-mini"}

func newTestImporter(llm *fakeLLM) (*Importer, *db.MemoryStore) {
	store := db.NewMemoryStore()
	return NewImporter(fakeText{}, llm, store, NewSessionStore(100), 50), store
}
