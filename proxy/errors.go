package proxy

import "errors"

// errNotHijackable is returned by HandlerContext.Hijack when the underlying
// http.ResponseWriter does not support hijacking (should not happen over the
// proxy's own listener, which always uses plain TCP).
var errNotHijackable = errors.New("proxy: response writer does not support hijacking")

// errBodyTooLarge is returned by Body.Buffer when the body reaches the
// limit it was constructed with; callers needing every byte regardless of
// size should use Body.AsStream instead.
var errBodyTooLarge = errors.New("proxy: body exceeds buffering limit")

// errCallbackTimeout is returned by CallbackHandler when fn does not finish
// within its configured timeout. dispatch turns any Handler error into a 500
// response and an EventRequestAborted rather than EventResponseCompleted.
var errCallbackTimeout = errors.New("proxy: mock callback timed out")
