/*
Package secrets implements the in-process password store and token cache
the Backup Engine and admin API depend on: service-account password
verification, and bearer-token issuance/validation with a refresh
margin. Neither concern is the system's core subject matter (spec.md
names the token cache "specified only by the contract the Backup Engine
depends on") so both stores are intentionally minimal.

Concurrency follows the shared-resource policy named for this
component: one RWMutex over the password map, one over the token
cache, each independently lockable so a password update never blocks a
token lookup and vice versa.
*/
package secrets
