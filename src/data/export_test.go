package data

var EnsureParamForTest = ensureParam
