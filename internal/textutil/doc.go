// Package textutil provides small string helpers shared by the input and
// output layers, chiefly making file names safe for use as directory names.
package textutil
