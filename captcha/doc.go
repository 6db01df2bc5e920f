// Package captcha issues and consumes one-time login challenges.
//
// A challenge is a short random answer stored lowercase at captcha:{id}
// with a TTL, plus an SVG rendering of it returned to the caller. Consume
// always deletes the challenge (GETDEL), so a wrong guess burns it.
//
// # What this package must NOT do
//
//   - Decide whether login requires a captcha. The engine reads the
//     enabled switch and only calls Consume when it is set.
//   - Log or return stored answers.
package captcha
