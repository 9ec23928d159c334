// Package connection provides retry policy for establishing a link to a
// node.
//
// A node that was just plugged in or rebooted may refuse the first few
// connection attempts. Retry spaces attempts with exponential backoff and
// jitter, and stops early on context cancellation or a permanent error.
//
//	b := connection.NewBackoff()
//	err := connection.Retry(ctx, b, 3, func(ctx context.Context) error {
//		return dial(ctx)
//	})
package connection
