// Package tokentally wraps an OpenAI-compatible chat completion provider
// (DeepSeek by default) and keeps running totals of token usage and
// estimated cost across calls.
//
// Every successful call adds its cache hit, cache miss, completion and total
// token counters to the totals, prices them with per-million-token rates and
// logs one usage line:
//
//	[USAGE] est. cost=0.000045, cache_hit=0, cache_miss=5, completion=1, total=6
//
// # Basic use
//
//	llm, _ := tokentally.New("deepseek-chat", "https://api.deepseek.com", os.Getenv("DEEPSEEK_API_KEY"),
//	    tokentally.WithOption("temperature", 0.2),
//	    tokentally.WithLogger(logger),
//	)
//	reply, err := llm.Call(ctx, "Summarize this paragraph ...")
//	totals := llm.Usage()
//
// # Message sequences
//
//	reply, err := llm.CallMessages(ctx, []tokentally.Message{
//	    {Role: tokentally.RoleSystem, Content: "Answer in one word."},
//	    {Role: tokentally.RoleUser, Content: "Capital of France?"},
//	})
//
// Failed calls return an error and leave the totals unchanged. Nothing is retried.
// An LLM is safe for concurrent use.
package tokentally
