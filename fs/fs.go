// Package appfs embeds the files shipped inside the binaries.
package appfs

import "embed"

// FS holds the SQL migrations under "migrations" and the email templates
// under "templates/email".
//go:embed migrations/*.sql templates/email/*
var FS embed.FS
