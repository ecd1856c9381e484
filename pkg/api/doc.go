// Package api exposes the engine over HTTP with echo.
//
// Routes, all under /api/v1:
//
//	POST   /schedules                        create an anchor and its occurrences
//	GET    /schedules/:id                    load one schedule
//	PATCH  /schedules/:id                    change pass-through fields
//	DELETE /schedules/:id?scope=&expect=     delete self or the whole family
//	PATCH  /schedules/:id/date               reschedule one schedule
//	POST   /schedules/:id/transitions        change status
//	GET    /schedules/:id/family             family summary for delete prompts
//	GET    /schedules/:id/family/members     list the family by date
//	POST   /schedules/:id/family/transitions change status of every member
//	GET    /schedules/:id/rule               rule read from the anchor
//	PUT    /schedules/:id/rule               replace the anchor's rule
//
// Errors are returned as {"error": ..., "code": ...} with the status chosen
// by the error kind.
package api
