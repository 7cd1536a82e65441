// Package secrets resolves ${secret:name} references in configuration.
//
// Values such as API keys and sink headers can be written as references
// instead of literals:
//
//	server:
//	  auth:
//	    keys:
//	      - name: ci
//	        key: ${secret:ci-api-key}
//
// A Manager tries its providers in order. EnvProvider reads
// GUARDIAN_SECRET_CI_API_KEY, FileProvider reads <dir>/ci-api-key. Secret
// values are never logged; names are redacted to their first and last two
// characters.
package secrets
