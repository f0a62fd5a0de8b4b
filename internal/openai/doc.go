// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package openai provides a streaming client for OpenAI-compatible chat
// completion servers running on the local machine.
//
// LM Studio, llama.cpp's server and vLLM all expose /v1/chat/completions
// with Server-Sent Events streaming. The client speaks that dialect only;
// no hosted-provider features (billing, org headers, retries) are carried.
//
// Usage:
//
//	client := openai.NewClient(openai.DefaultConfig())
//	stream, err := client.OpenChatStream(ctx, "qwen2.5-coder", messages)
//	if err != nil { ... }
//	defer stream.Close()
//	for {
//		chunk, err := stream.Next()
//		if err == io.EOF { break }
//		...
//	}
package openai
