package domain

// KeyPrefix namespaces every key written to Valkey/Redis.
const KeyPrefix = "rc:"
