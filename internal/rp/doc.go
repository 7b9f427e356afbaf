// Package rp provides a scope-based client for the Report Portal 5.x API,
// covering both the reporting side (start/finish launch and item, single and
// batched log submission with attachments) and the read side (launch and
// item queries with filtering and pagination).
//
// Usage:
//
//	client, err := rp.New(baseURL, token, rp.WithTimeout(30*time.Second))
//	launchUUID, err := client.Project("qa").Launches().Start(ctx, rq)
//	itemUUID, err := client.Project("qa").Items().Start(ctx, parentUUID, itemRQ)
//	err = client.Project("qa").Logs().SaveBatch(ctx, records)
package rp
