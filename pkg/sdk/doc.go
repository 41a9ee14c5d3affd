// Package reportcoach embeds the report passage search pipeline in a Go program
// without running the HTTP server.
//
// A client needs an embedding provider. The text-generation model is optional:
// without one every query is searched as typed.
//
//	client, _ := reportcoach.New(ctx,
//	    reportcoach.WithValkey("localhost:6379", ""),
//	    reportcoach.WithEmbedder(myEmbedder),
//	    reportcoach.WithInstructions("query: ", "passage: "),
//	    reportcoach.WithGenerator(myGenerator),
//	)
//	defer client.Close()
//
//	_, _ = client.Ingest(ctx, "./data/chunks")
//	resp, _ := client.Search(ctx, "미세먼지 저감 장치 실험", 5)
//	for _, r := range resp.Results {
//	    fmt.Println(r.Rank, r.ReportNumber, r.Title, r.Score.Total)
//	}
//
// Without WithValkey or WithQdrant the vector index lives in memory;
// WithMemoryIndex persists it to a file between runs.
package reportcoach
