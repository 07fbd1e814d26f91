// Package sundayschool is the Sunday School attendance ledger.
//
// Target: parish Sunday schools, one ledger per school.
package sundayschool

// TODO: admin: export a class register (CSV) for a date range
// TODO: api: refresh token endpoint; tokens are only minted by the admin CLI for now

// Calendar notes:
// holidays come from config (attendance.holidays); move them to the DB once schools manage their own calendar.
// Classes only meet on Sundays; special services are not tracked.
