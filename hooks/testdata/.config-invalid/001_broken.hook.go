package main

func init() {
	Register(
}
