// Package publisher implements the publish, replace, remove, clean and list
// workflows on top of a transport and the manifest synchronizer.
//
// Every workflow is a Command driven by Run through the same phases:
// Prepare, transport Init, BeforeAction, Action, AfterAction and transport Close.
package publisher
