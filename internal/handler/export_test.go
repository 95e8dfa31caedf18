package handler

// MeResp exposes the unexported meResp type to external package tests.
type MeResp = meResp
