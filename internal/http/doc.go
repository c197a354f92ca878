// Package http exposes the allocation workflow and the reservation backend
// over JSON.
//
// The router serves the following endpoints:
//   - GET /sections/{id}: the section with its suitable time ranges, each
//     marked "allocated" or "unallocated", and its allocations.
//   - POST /sections/{id}/evaluate: body {"selection":["Mon-07-0",...]}.
//     Returns the selection window, the matching ranges, whether the match is
//     ambiguous, whether the selection falls outside the requested times and
//     whether its duration is within the section's bounds.
//   - POST /sections/{id}/allocations: body {"selection",
//     "reservation_unit_id","suitable_time_range_id"}. The range id is
//     optional when the selection matches exactly one range. Rejections carry
//     "code" and "message_key".
//   - DELETE /allocations/{id}: removes an allocation. 204 on success.
//   - POST /series: creates a weekly series and its occurrences. Occurrences
//     that would collide are listed in the 409 response.
//   - GET /series/{id}/occurrences: lists the occurrences of a series.
//   - POST /series/{id}/edits: body {"name","description","memo",
//     "buffer_before","buffer_after"} with buffers in seconds. Applies the edit
//     to future confirmed occurrences and returns the batch result.
//   - POST /reservation-units/{id}/collisions: body {"begin","end",
//     "buffer_before","buffer_after","exclude_id"}. Returns {"collides","with"}.
//
// Request/response DTOs live alongside their respective handlers.
package http
