package llm

import "context"

// Fake returns deterministic canned text for offline runs and tests.
type Fake struct {
	Response string
	Err      error
}

func NewFake() *Fake { return &Fake{} }

func (f *Fake) Name() string { return "FakeLLM" }
func (f *Fake) Close() error { return nil }

func (f *Fake) GenerateText(_ context.Context, _ string) (string, error) {
	if f.Err != nil {
		return "", f.Err
	}
	if f.Response != "" {
		return f.Response, nil
	}
	return `[{"category":"architecture","title":"Offline insight","description":"Canned output for runs without a configured model."}]`, nil
}
