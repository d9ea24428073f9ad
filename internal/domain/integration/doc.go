// Package integration contains the marketplace reconciliation bounded context.
// It keeps local quantity on hand consistent with a third-party marketplace's
// inventory record and order stream.
//
// Key concepts:
//   - StockSyncRecord: ledger entry describing one desired quantity push (outbound)
//   - RemoteOrderLine: deduplicated record of an observed remote order line (inbound)
//   - MarketplaceClient / OrderPageSource / TokenSource: ports to the marketplace
//   - RemoteError: classification of marketplace failures (transient, rate limited, permanent)
//
// Design Pattern: Ports & Adapters
//   - Ports (interfaces) are defined here in the domain layer
//   - Adapters (implementations) are in the infrastructure layer
package integration
