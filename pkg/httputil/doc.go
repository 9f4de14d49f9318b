// Package httputil provides retry helpers shared by network clients.
//
// # Overview
//
// The layout client and the redis/mongo cache backends talk to services
// that may be briefly unavailable (a server still starting, a connection
// reset, a 503 during a deploy). They wrap such failures in
// [RetryableError] and call [Retry]:
//
//	err := httputil.Retry(ctx, 3, 250*time.Millisecond, func() error {
//	    resp, err := client.Do(req)
//	    if err != nil {
//	        return &httputil.RetryableError{Err: err}
//	    }
//	    if httputil.IsTransientStatus(resp.StatusCode) {
//	        return &httputil.RetryableError{Err: fmt.Errorf("status %d", resp.StatusCode)}
//	    }
//	    ...
//	})
//
// Any error not wrapped in [RetryableError] stops the loop immediately, so
// a 400 for a malformed document is never resent.
package httputil
