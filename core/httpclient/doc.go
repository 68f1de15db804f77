// Package httpclient provides the outbound HTTP primitive shared by every
// network-facing component in the validation pipeline.
//
// The client keeps two independent retry budgets. The main budget covers
// transport errors and 5xx responses and backs off exponentially (1s, 2s,
// 4s, ... capped at 30s). A separate fixed budget covers 429 responses,
// which wait for the server-provided Retry-After interval and never consume
// a main attempt. Responses in the 400-499 range other than 429 are handed
// back to the caller untouched: they are facts about the request, not
// transient conditions worth retrying.
//
// Usage:
//
//	client := httpclient.New(httpclient.WithMaxRetries(3))
//
//	resp, err := client.Get(ctx, url, http.Header{"Accept": {"application/dns-json"}})
//	if err != nil {
//		// budget exhausted; errors.Is(err, httpclient.ErrRetriesExhausted)
//	}
//	defer resp.Body.Close()
package httpclient
