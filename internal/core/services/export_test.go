package services

// SyncCodeLengthForTest exposes syncCodeLength to external test packages.
const SyncCodeLengthForTest = syncCodeLength
