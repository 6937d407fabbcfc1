package retrieval

import "context"

// FakeRetriever is an in-memory Retriever for tests: it returns a fixed
// set of records regardless of query, truncated to k.
type FakeRetriever struct {
	Records []RetrievedRecord
	Err     error
}

func (f *FakeRetriever) Search(ctx context.Context, query, domainFilter string, k int) ([]RetrievedRecord, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	out := f.Records
	if len(out) > k {
		out = out[:k]
	}
	return out, nil
}

func (f *FakeRetriever) IndexTable(ctx context.Context, record RetrievedRecord) error {
	f.Records = append(f.Records, record)
	return nil
}

func (f *FakeRetriever) IndexColumn(ctx context.Context, record RetrievedRecord) error {
	f.Records = append(f.Records, record)
	return nil
}
