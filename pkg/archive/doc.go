// Package archive exports versioned books from a content archive into a
// content-addressed snapshot in object storage and resolves version-less
// requests against that snapshot.
//
// The root package holds the shared data model: identifiers and their
// ident-hash form, composite book:page hashes, content kinds, scraped items
// and the table-of-contents tree. Subpackages build on it:
//
//	objectkey  storage layout and key generation
//	fetch      HTTP client for the content API
//	scrape     recursive export walk producing a lazy item stream
//	upload     bounded, concurrent writes to object storage
//	resolve    latest-version redirects for inbound requests
//	storage/*  BlobStore backends (S3, filesystem, memory)
//	ledger     record of export runs (memory, Postgres)
//
// Storage Key Layout
//
// The keys written by the exporter are a durable contract read back by the
// resolver:
//
//	{raw}{id}@{version}.json|.html
//	{baked}{book_id}@{book_version}.json|.html
//	{baked}{book_id}@{book_version}:{page_id}.json|.html
//	{resources}{sha}
//	{resources}{sha}-media-type
package archive
