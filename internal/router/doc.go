package router

// Package router turns chat events into pending requests and confirmed jobs
