// Package config loads the configuration of a Windows replication
// agreement and watches it for changes.
//
// A configuration file looks like:
//
//	agreement:
//	  name: ad-example
//	  host: dc1.example.com
//	  port: 636
//	  transport: ldaps
//	  bindMethod: simple
//	  bindDN: cn=sync,cn=users,dc=example,dc=com
//	  credentials: ${WINSYNC_BIND_PASSWORD}
//	  timeout: 2m
//	  linger: 60s
//	  windowsSubtree: ou=people,dc=example,dc=com
//	  windowsUserFilter: (objectclass=user)
//	tls:
//	  enabled: true
//	  caFile: /etc/winsync/ad-ca.pem
//	logging:
//	  level: info
//	  format: json
//	watchdog:
//	  timeout: 5m
//	  level: trace
//
// References of the form ${VAR} and ${VAR:-default} are replaced with
// environment values before the YAML is parsed. Unknown keys are rejected.
package config
