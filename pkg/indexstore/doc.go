// Package indexstore embeds the index metadata and document-reference store
// in a Go program.
//
// A Store keeps the index catalog, the per-index statistics and error logs,
// and the document reference graph in one embedded engine (bbolt or pebble).
// Every change happens inside a Batch: all reads and writes of the batch
// share one engine transaction and become visible together on commit.
//
//	st, _ := indexstore.Open(ctx, indexstore.WithBolt("/var/lib/app/index.bolt"))
//	defer st.Close()
//
//	err := st.Batch(ctx, func(tx *indexstore.Tx) error {
//	    if err := tx.Indexing().AddIndex("Orders/ByCustomer", false); err != nil {
//	        return err
//	    }
//	    return tx.References().UpdateDocumentReferences(
//	        "Orders/ByCustomer", "orders/1", []string{"customers/7"},
//	    )
//	})
//
// Catalog versions give optimistic concurrency: read IndexVersion in a View,
// pass it to AddIndexVersioned in a later Batch, and retry on a
// ConcurrencyError (IsRetryable reports true).
//
// Committed stats can be mirrored into Redis or Valkey hashes for external
// dashboards with WithRedisMirror.
package indexstore
