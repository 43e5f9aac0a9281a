// Package hfrouter implements the llm.Provider interface on top of the
// Hugging Face Inference Router.
//
// The router speaks the OpenAI Chat Completions protocol, so the wire
// types live in the shared providers package. What this package adds is
// the router's operational quirk: serverless models scale to zero and
// answer 503 while an instance warms up. Completion treats that as a
// retryable condition, waits Config.WarmupDelay and tries again up to
// Config.MaxRetries times before surfacing llm.ErrModelWarmingUp.
//
// Usage:
//
//	p := hfrouter.New(hfrouter.Config{
//	    APIKey:       cfg.LLM.APIKey,
//	    BaseURL:      cfg.LLM.BaseURL,
//	    DefaultModel: cfg.LLM.Model,
//	    WarmupDelay:  cfg.LLM.WarmupDelay,
//	    MaxRetries:   cfg.LLM.MaxRetries,
//	}, logger)
package hfrouter
