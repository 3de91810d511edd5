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

// Package ai provides the answering engine abstraction used by askq.
//
// An answering engine turns a question, plus optional conversation context,
// into a lazy stream of cumulative answer text. The dispatcher never talks to
// a vendor SDK directly; it only sees the interfaces defined here.
//
// # Interfaces
//
//   - Engine: Streams the answer to a single question as iter.Seq2[Step, error]
//   - Provider: Creates an Engine per question, bound to a credential
//
// # Implementation Packages
//
//   - ai/openai: OpenAI-compatible endpoints (Ollama, vLLM, ...) via langchaingo
//   - ai/chatgpt: OpenAI Chat Completions via the official openai-go SDK
//   - ai/anthropic: Anthropic Messages API via anthropic-sdk-go
//   - ai/gemini: Google Gemini via the genai SDK
//   - ai/mock: Scripted engines for unit testing without external services
//
// All production engines keep conversation context in an
// ai/conversation.Store so that conversation and parent IDs returned with
// one answer can be handed back with the next question.
//
// # Usage Example
//
//	config := ai.NewConfig(ai.WithProvider(ai.ProviderOpenAI), ai.WithModel("qwen2.5:3b"))
//	provider, err := openai.NewProvider(config, conversation.NewStore(config.MaxConversations))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer provider.Close()
//
//	engine, err := provider.NewEngine(token)
//	for step, err := range engine.Ask(ctx, ai.Request{Question: "Hello"}) {
//	    if err != nil {
//	        return err
//	    }
//	    fmt.Println(step.Message)
//	}
package ai
