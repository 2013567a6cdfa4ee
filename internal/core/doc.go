// Package core holds the recipient list and campaign logic, independent of
// any UI or mail provider.
//
// # Recipients
//
// A [RecipientStore] owns one ordered list of recipients, unique by
// lower-cased email. Uploaded tables go through [ParseTable], then
// [ValidateRows] splits rows into recipients and [InvalidEntry] rejects, and
// [Dedupe] keeps the first occurrence of each address. Loading a table
// replaces the whole store; a table that fails to parse leaves it untouched.
// Manual entries are checked with [CheckEmail] and appended with
// [RecipientStore.AddManual].
//
// Every mutation redraws the full list on each subscribed [Renderer].
//
// # Campaigns
//
// [Submitter.Submit] validates a [Campaign] before anything goes over the
// network, hands it to a [Transport], and turns the accepted count into a
// [DeliverySummary]. Open counts are simulated as 20% of accepted messages.
//
// # Templates
//
// Canned messages are registered with [RegisterTemplate] and rendered with
// Liquid by [RenderTemplate]. [CompileText] prepares outgoing text for
// per-recipient placeholders.
//
// # Error Handling
//
// [MapError] maps technical errors to user messages with support codes:
//
//   - REC: recipient entry and removal
//   - FILE: uploaded file problems
//   - CMP: campaign validation and concurrency
//   - MAIL: mail provider failures
package core
