// Package report logs periodic capture usage: disk budget consumption,
// sampler counters and the catalog total. Reports run on a robfig/cron
// schedule configured as report.schedule.
package report
