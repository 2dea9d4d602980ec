// Package model defines domain data structures shared across the bot: pending
// confirmation requests, message references, download jobs and their status
// enums. Structures carry explicit state transitions and no behaviour beyond
// small formatting helpers.
package model
