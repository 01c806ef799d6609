// Package filtering narrows the fetched catalog batch before reconciliation.
//
// Items are matched on two axes:
//
//   - Titles: glob patterns (gobwas/glob) matched case-insensitively against
//     every title variant of an item. '*' matches across any character.
//   - Types: exact, case-insensitive match on the media type ("TV", "Movie").
//
// Both axes follow the same precedence rules:
//
//  1. A match on any exclude entry excludes the item.
//  2. If include entries are given, the item must match one of them.
//  3. With no entries the item is included.
//
// An item must pass both axes. Filtered items are never recorded in the sync
// state, so they never produce notifications.
package filtering
