// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package openai provides an answering engine for OpenAI-compatible chat
// services (Ollama, vLLM, LM Studio, ...).
//
// This package uses the langchaingo library to talk to the service and
// streams the answer token by token. Conversation context is kept in an
// ai/conversation.Store shared by all engines of one provider.
//
// # Usage
//
//	config := ai.NewConfig(
//	    ai.WithHost("http://localhost:11434"), // /v1 added automatically
//	    ai.WithModel("qwen2.5:3b"),
//	)
//
//	provider, err := openai.NewProvider(config, nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer provider.Close()
//
//	engine, err := provider.NewEngine("")
//	for step, err := range engine.Ask(ctx, ai.Request{Question: "Why is the sky blue?"}) {
//	    ...
//	}
package openai
