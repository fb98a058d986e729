/*
Package sbtable contains an SSTable implementation with arbitrary byte
string keys, prefix compression and optional bloom filters.

# Data Structure Documentation

# Table

A table contains a series of data blocks followed by meta blocks, a
metaindex block, an index block and a fixed-size table footer. Every
block is framed by a 5-byte trailer.

	Table layout:
	+---------+---------+---------+-------------+-----------+-------------+--------------+
	| block 1 |   ...   | block n | meta blocks | metaindex | block index | table footer |
	+---------+---------+---------+-------------+-----------+-------------+--------------+

	Block frame:
	+----------------+---------------------------+------------------+
	| body (varlen)  | compression type (1 byte) | CRC-32C (4 bytes)|
	+----------------+---------------------------+------------------+

	Table footer (48 bytes):
	+----------------------------+------------------------+---------+------------------+
	| metaindex handle (varints) | index handle (varints) | padding | magic (8 bytes)  |
	+----------------------------+------------------------+---------+------------------+

The index block maps the last key of each data block to the block's
handle, an offset/size varint pair. The metaindex block maps meta block
names, such as "filter.<policy>", to their handles.

# Block

A block body comprises a series of entries, followed by a restart array
and a restart count. Entries at restart offsets store their key in
full, subsequent entries share a prefix with their predecessor.

	Block body:
	+---------+-------+---------+---------------------------+----------------------------+
	| entry 1 |  ...  | entry n | restart offsets (4B each) | number of restarts (4 bytes) |
	+---------+-------+---------+---------------------------+----------------------------+

	Entry:
	+-----------------+---------------------+--------------------+--------------------+-----------------+
	| shared (varint) | non-shared (varint) | value len (varint) | key suffix (varlen)| value (varlen)  |
	+-----------------+---------------------+--------------------+--------------------+-----------------+

# Filter

The filter block partitions the key space by data block offset, storing
one filter payload per 2KiB of file. Readers consult it on Seek to skip
data blocks that cannot contain the key.

	Filter block:
	+----------+-------+----------+----------------------------+----------------------+---------------+
	| filter 1 |  ...  | filter n | filter offsets (4B each)   | array start (4 bytes)| base lg (1B)  |
	+----------+-------+----------+----------------------------+----------------------+---------------+
*/
package sbtable
