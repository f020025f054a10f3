// Command voicebatch converts text files to speech in bulk through the MiniMax
// asynchronous synthesis service.
//
// Usage:
//
//	voicebatch run [files or directories...] [--manifest batch.toml] [--output DIR]
//	voicebatch history [show BATCH]
//	voicebatch records [--output DIR]
//	voicebatch config init|show|validate
//	voicebatch test-notify
//
// Each input produces {output}/{name}/ holding the extracted audio and, when
// timing metadata is available, {name}.srt.
package main
