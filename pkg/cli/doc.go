// Package cli provides the ssoadmin command-line interface for SSO
// administration.
//
// # Commands
//
// Sessions:
//
//	ssoadmin login email --email ani@example.com
//	ssoadmin login firebase --token <id-token>
//	ssoadmin login google [--no-browser]
//	ssoadmin exchange --token <sso-token>
//	ssoadmin status [--remote] [--json]
//	ssoadmin sessions
//	ssoadmin refresh
//	ssoadmin logout [--client <client-id> [--this-device]]
//
// Applications:
//
//	ssoadmin apps mine
//	ssoadmin apps list --search portal --active true
//	ssoadmin apps create --name Portal --code portal --url https://portal.example.com --icon icon.png
//	ssoadmin apps update --name "Portal Baru" app1
//	ssoadmin apps assign --user u1 app1 app2
//	ssoadmin apps remove --user u1 app1 app2
//
// Users:
//
//	ssoadmin users me [--name <name>] [--avatar avatar.png]
//	ssoadmin users list --role admin
//	ssoadmin users search
//
// Audit (requires SSOADMIN_AUDIT_LOG):
//
//	ssoadmin audit --limit 50
//
// The search commands read input line by line. A plain line is a search
// term; ":more", ":clear", ":pick N", ":id ID" and ":quit" are actions.
//
// # Configuration
//
// Settings come from .env, the YAML profile named by SSOADMIN_PROFILE and
// SSOADMIN_* environment variables; see package config.
//
//	export SSOADMIN_API_BASE_URL="https://sso.example.com/api/v1"
package cli
