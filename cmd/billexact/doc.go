// Command billexact turns activity into billable legal time entries,
// checks them against billing guidelines, and writes LEDES 1998B invoices.
//
// Commands open the configured SQLite store directly; there is no daemon.
// Every command accepts --config to point at an alternate TOML file.
package main
